package patch

import "strings"

// Format re-emits the document in its wire form. Parsing the output
// yields an equivalent document; mixed-version documents emit each
// instruction in its own format.
func (d *Document) Format() string {
	var b strings.Builder

	if d.BaseSHA256 != "" {
		b.WriteString(kwBaseSHA + " " + d.BaseSHA256 + "\n")
	}

	hasV1 := false
	for _, in := range d.Instructions {
		if in.Version == V1 {
			hasV1 = true
			break
		}
	}
	if hasV1 {
		b.WriteString(kwMaxMatches + " 1\n")
	}

	for _, in := range d.Instructions {
		switch in.Version {
		case V0:
			b.WriteString(kwSearchOpen + "\n")
			b.WriteString(in.Search + "\n")
			b.WriteString(kwSeparator + "\n")
			b.WriteString(in.Replace + "\n")
			b.WriteString(kwSearchClose + "\n")
		case V1:
			b.WriteString(kwLeftCtx + "\n")
			b.WriteString(in.LeftCtx + "\n")
			b.WriteString(kwOld + "\n")
			b.WriteString(in.Old + "\n")
			b.WriteString(kwRightCtx + "\n")
			b.WriteString(in.RightCtx + "\n")
			b.WriteString(kwNew + "\n")
			b.WriteString(in.New + "\n")
		}
	}

	return b.String()
}
