package safety

// PathSetRoadmapStore is the built-in RoadmapStore: a fixed set of
// repo-relative paths that belong to the structured task store.
type PathSetRoadmapStore struct {
	Paths   []string
	Surface string
}

// DefaultRoadmapStore protects the tool's own roadmap and task files.
func DefaultRoadmapStore() *PathSetRoadmapStore {
	return &PathSetRoadmapStore{
		Paths:   []string{".patchgate/roadmap.json", ".patchgate/tasks.json"},
		Surface: "`patchgate roadmap` commands",
	}
}

func (s *PathSetRoadmapStore) IsStorePath(relPath string) bool {
	rel := NormalizePath(relPath)
	for _, p := range s.Paths {
		if rel == NormalizePath(p) {
			return true
		}
	}
	return false
}

func (s *PathSetRoadmapStore) CommandSurface() string { return s.Surface }
