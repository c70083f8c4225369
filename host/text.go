package host

import (
	"strconv"
	"strings"

	"github.com/epochengine/epoch/assets"
)

// missingText stands in for names and messages that cannot be
// resolved. The window still opens so the scene keeps its pacing.
const missingText = "…"

// ResolvedText is a message rendered for display: name and glyph
// tokens substituted, page boundaries applied.
type ResolvedText struct {
	Pages   []string
	Options []string // resolved choice texts, nil for plain messages
	AutoEnd bool     // the window closes itself instead of waiting for input
}

func missingEntry() ResolvedText {
	return ResolvedText{Pages: []string{missingText}}
}

// ResolveEntry renders one dialogue entry against the party's names.
// Pacing tokens (waits, narration framing) carry no glyphs and are
// dropped; icons and buttons render as bracketed glyph names.
func ResolveEntry(e *assets.DialogueEntry, n Namer) ResolvedText {
	var out ResolvedText
	var page strings.Builder
	var choice *strings.Builder

	put := func(s string) {
		page.WriteString(s)
		if choice != nil {
			choice.WriteString(s)
		}
	}

	for _, tok := range e.Tokens {
		switch tok.Kind {
		case assets.TokenText:
			put(tok.Text)
		case assets.TokenBreak:
			put("\n")
		case assets.TokenPage, assets.TokenAutoPage:
			out.Pages = append(out.Pages, page.String())
			page.Reset()
		case assets.TokenAutoEnd:
			out.AutoEnd = true
		case assets.TokenNumber:
			put(strconv.Itoa(n.Number()))
		case assets.TokenSharp:
			put("#")
		case assets.TokenSpace:
			put(" ")
		case assets.TokenIcon, assets.TokenButton:
			put("[" + tok.Text + "]")
		case assets.TokenPartyName:
			put(orMissing(n.Name(tok.Text)))
		case assets.TokenNickname:
			put(orMissing(n.Nickname(tok.Text)))
		case assets.TokenPartySlot:
			put(orMissing(n.SlotName(tok.Arg)))
		case assets.TokenChoiceStart:
			choice = &strings.Builder{}
		case assets.TokenChoiceEnd:
			if choice != nil {
				out.Options = append(out.Options, choice.String())
				choice = nil
			}
		}
	}
	if page.Len() > 0 || len(out.Pages) == 0 {
		out.Pages = append(out.Pages, page.String())
	}
	return out
}

func orMissing(s string, ok bool) string {
	if !ok {
		return missingText
	}
	return s
}
