// Package splitter splits raw note text into an ordered sequence of
// content blocks.
//
// The split is lossless: concatenating RawContent over the returned
// blocks reproduces the input byte for byte. Block boundaries come from
// the goldmark parse tree snapped to line starts, so trailing blank
// lines attach to the preceding block. Each block carries a fast
// non-cryptographic content hash used purely for change detection.
package splitter

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/slugs"
)

// Split splits raw text into blocks. Re-splitting unchanged text yields
// blocks with identical hashes in identical order, which is what lets a
// consumer skip re-processing unchanged regions.
func Split(raw string) []model.Block {
	if raw == "" {
		return nil
	}

	source := []byte(raw)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	lineStarts := computeLineStarts(raw)

	type boundary struct {
		line int
		node ast.Node
	}
	var bounds []boundary
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		line, ok := nodeStartLine(n, source, lineStarts)
		if !ok {
			continue
		}
		// Snap monotonically: goldmark occasionally reports overlapping
		// spans for adjacent constructs.
		if len(bounds) > 0 && line <= bounds[len(bounds)-1].line {
			continue
		}
		bounds = append(bounds, boundary{line: line, node: n})
	}

	var blocks []model.Block
	appendBlock := func(content string, n ast.Node) {
		if content == "" {
			return
		}
		b := model.Block{
			Hash:       xxhash.Sum64String(content),
			Type:       blockType(n, content),
			RawContent: content,
		}
		if h, ok := n.(*ast.Heading); ok && b.Type == model.BlockHeading {
			b.HeadingLevel = h.Level
			b.Slug = slugs.HeadingSlug(headingText(h, source))
		}
		blocks = append(blocks, b)
	}

	if len(bounds) == 0 {
		// Whitespace-only input: one blank block keeps the split lossless.
		return []model.Block{{
			Hash:       xxhash.Sum64String(raw),
			Type:       model.BlockBlank,
			RawContent: raw,
		}}
	}

	// Leading blank lines before the first node form their own block.
	firstStart := lineStarts[bounds[0].line]
	if firstStart > 0 {
		blocks = append(blocks, model.Block{
			Hash:       xxhash.Sum64String(raw[:firstStart]),
			Type:       model.BlockBlank,
			RawContent: raw[:firstStart],
		})
	}

	for i, b := range bounds {
		start := lineStarts[b.line]
		end := len(raw)
		if i+1 < len(bounds) {
			end = lineStarts[bounds[i+1].line]
		}
		appendBlock(raw[start:end], b.node)
	}

	return blocks
}

// nodeStartLine returns the 0-indexed line on which the node's raw text
// begins. Fenced code blocks report their content lines only, so the
// opening fence line is one above the first content segment.
func nodeStartLine(n ast.Node, source []byte, lineStarts []int) (int, bool) {
	if fcb, ok := n.(*ast.FencedCodeBlock); ok {
		if fcb.Info != nil {
			return offsetToLine(lineStarts, fcb.Info.Segment.Start), true
		}
		if fcb.Lines().Len() > 0 {
			line := offsetToLine(lineStarts, fcb.Lines().At(0).Start)
			if line > 0 {
				return line - 1, true
			}
			return 0, true
		}
		return 0, false
	}

	if off, ok := firstSegmentStart(n); ok {
		return offsetToLine(lineStarts, off), true
	}
	return 0, false
}

// firstSegmentStart finds the smallest byte offset covered by the node
// or any of its descendants.
func firstSegmentStart(n ast.Node) (int, bool) {
	best, found := 0, false
	consider := func(off int) {
		if !found || off < best {
			best, found = off, true
		}
	}

	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		consider(n.Lines().At(0).Start)
	}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if off, ok := firstSegmentStart(child); ok {
			consider(off)
		}
	}
	if t, ok := n.(*ast.Text); ok {
		consider(t.Segment.Start)
	}
	return best, found
}

// blockType maps a goldmark node to a block type. Math fences are not a
// goldmark construct; a paragraph whose first line opens with "$$" is
// classified as math.
func blockType(n ast.Node, content string) model.BlockType {
	switch n.(type) {
	case *ast.Heading:
		return model.BlockHeading
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return model.BlockCode
	case *ast.List:
		return model.BlockList
	default:
		if strings.HasPrefix(strings.TrimLeft(content, " \t"), "$$") {
			return model.BlockMath
		}
		return model.BlockParagraph
	}
}

// headingText collects the text content of a heading node.
func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(h)
	return strings.TrimSpace(b.String())
}

// computeLineStarts computes the byte offset of each line start.
func computeLineStarts(content string) []int {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' && i+1 < len(content) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// offsetToLine converts a byte offset to a 0-indexed line number.
func offsetToLine(lineStarts []int, offset int) int {
	for i := len(lineStarts) - 1; i >= 0; i-- {
		if lineStarts[i] <= offset {
			return i
		}
	}
	return 0
}
