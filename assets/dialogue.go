package assets

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/epochengine/epoch/container"
)

// TokenKind discriminates dialogue body tokens.
type TokenKind uint8

const (
	TokenText        TokenKind = iota // plain text run
	TokenBreak                        // line break
	TokenPage                         // wait for input, clear the window
	TokenAutoEnd                      // close without input
	TokenAutoPage                     // page without input
	TokenNarration                    // toggle narration framing
	TokenNumber                       // insert the pending number value
	TokenSharp                        // literal sharp glyph
	TokenSpace                        // fixed horizontal space, Arg = width
	TokenWait                         // pause, Arg = frames
	TokenIcon                         // inline icon, Text = icon name
	TokenNoIcon                       // clear inline icon
	TokenButton                       // bound-key glyph, Text = button name
	TokenPartyName                    // member name, Text = member tag, "" = leader
	TokenNickname                     // member nickname, Text = member tag
	TokenPartySlot                    // name of party slot Arg (1..3)
	TokenChoiceStart                  // open choice span Arg (1..4)
	TokenChoiceEnd                    // close choice span, Arg = 0 for generic
)

// Token is one piece of a dialogue body.
type Token struct {
	Kind TokenKind
	Text string
	Arg  int
}

// The tag inventory is closed: every <...> sequence the shipped tables
// use appears here or in the variable-form handling below. Anything
// else fails the decode.
var dialogueTags = map[string]Token{
	"PAGE":      {Kind: TokenPage},
	"AUTO_END":  {Kind: TokenAutoEnd},
	"AUTO_PAGE": {Kind: TokenAutoPage},
	"CT":        {Kind: TokenNarration},
	"NUMBER":    {Kind: TokenNumber},
	"SHARP":     {Kind: TokenSharp},
	"NON_ICON":  {Kind: TokenNoIcon},

	"ICON_ACCE":   {Kind: TokenIcon, Text: "ACCE"},
	"ICON_ARMO":   {Kind: TokenIcon, Text: "ARMO"},
	"ICON_AYL":    {Kind: TokenIcon, Text: "AYL"},
	"ICON_CRO":    {Kind: TokenIcon, Text: "CRO"},
	"ICON_FIRE":   {Kind: TokenIcon, Text: "FIRE"},
	"ICON_FRO":    {Kind: TokenIcon, Text: "FRO"},
	"ICON_HELM":   {Kind: TokenIcon, Text: "HELM"},
	"ICON_ITEM":   {Kind: TokenIcon, Text: "ITEM"},
	"ICON_LIGHT":  {Kind: TokenIcon, Text: "LIGHT"},
	"ICON_LUC":    {Kind: TokenIcon, Text: "LUC"},
	"ICON_MAG":    {Kind: TokenIcon, Text: "MAG"},
	"ICON_MAR":    {Kind: TokenIcon, Text: "MAR"},
	"ICON_ROB":    {Kind: TokenIcon, Text: "ROB"},
	"ICON_SHADOW": {Kind: TokenIcon, Text: "SHADOW"},
	"ICON_WATER":  {Kind: TokenIcon, Text: "WATER"},

	"BTN_CONF": {Kind: TokenButton, Text: "CONF"},
	"BTN_DASH": {Kind: TokenButton, Text: "DASH"},
	"BTN_L":    {Kind: TokenButton, Text: "L"},
	"BTN_MENU": {Kind: TokenButton, Text: "MENU"},
	"BTN_R":    {Kind: TokenButton, Text: "R"},
	"BTN_WARP": {Kind: TokenButton, Text: "WARP"},

	"NAME":     {Kind: TokenPartyName},
	"NAME_CRO": {Kind: TokenPartyName, Text: "CRO"},
	"NAME_MAR": {Kind: TokenPartyName, Text: "MAR"},
	"NAME_LUC": {Kind: TokenPartyName, Text: "LUC"},
	"NAME_ROB": {Kind: TokenPartyName, Text: "ROB"},
	"NAME_FRO": {Kind: TokenPartyName, Text: "FRO"},
	"NAME_AYL": {Kind: TokenPartyName, Text: "AYL"},
	"NAME_MAG": {Kind: TokenPartyName, Text: "MAG"},
	"NAME_SIL": {Kind: TokenPartyName, Text: "SIL"},
	"NAME_ITM": {Kind: TokenPartyName, Text: "ITM"},
	"NAME_TEC": {Kind: TokenPartyName, Text: "TEC"},

	"NICK_CRO": {Kind: TokenNickname, Text: "CRO"},
	"NAME_CNO": {Kind: TokenNickname, Text: "CRO"},

	"PT1":      {Kind: TokenPartySlot, Arg: 1},
	"PT2":      {Kind: TokenPartySlot, Arg: 2},
	"PT3":      {Kind: TokenPartySlot, Arg: 3},
	"NAME_PT1": {Kind: TokenPartySlot, Arg: 1},
	"NAME_PT2": {Kind: TokenPartySlot, Arg: 2},
	"NAME_PT3": {Kind: TokenPartySlot, Arg: 3},

	"C1": {Kind: TokenChoiceStart, Arg: 1},
	"C2": {Kind: TokenChoiceStart, Arg: 2},
	"C3": {Kind: TokenChoiceStart, Arg: 3},
	"C4": {Kind: TokenChoiceStart, Arg: 4},
	"CE": {Kind: TokenChoiceEnd},
}

// DialogueEntry is one message, tokenized.
type DialogueEntry struct {
	Ident  string // full identifier, e.g. "GUARDIA_012"
	Num    int    // trailing number of the identifier
	Tokens []Token
}

// Choices returns the entry's choice texts indexed by choice number,
// or nil when the entry has none.
func (e *DialogueEntry) Choices() []string {
	var out []string
	for i := 0; i < len(e.Tokens); i++ {
		if e.Tokens[i].Kind != TokenChoiceStart {
			continue
		}
		var sb strings.Builder
		for j := i + 1; j < len(e.Tokens); j++ {
			if e.Tokens[j].Kind == TokenChoiceEnd {
				i = j
				break
			}
			if e.Tokens[j].Kind == TokenText {
				sb.WriteString(e.Tokens[j].Text)
			}
		}
		out = append(out, sb.String())
	}
	return out
}

// DialogueTable is a decoded message bank.
type DialogueTable struct {
	ID      container.RecordID
	Entries []DialogueEntry

	byNum map[int]int
}

func (t *DialogueTable) AssetKind() container.Kind { return container.KindDialogue }

func (t *DialogueTable) MemSize() int {
	n := 64
	for _, e := range t.Entries {
		n += len(e.Ident) + 24
		for _, tok := range e.Tokens {
			n += 24 + len(tok.Text)
		}
	}
	return n
}

// Entry resolves a message by its identifier number.
func (t *DialogueTable) Entry(num int) (*DialogueEntry, bool) {
	i, ok := t.byNum[num]
	if !ok {
		return nil, false
	}
	return &t.Entries[i], true
}

// DecodeDialogue decodes a message bank record. One entry per line,
// "IDENT_###,body"; bodies are tokenized against the closed markup
// inventory.
func DecodeDialogue(rec *container.AssetRecord) (*DialogueTable, error) {
	if !utf8.Valid(rec.Data) {
		return nil, malformed(rec, "not valid UTF-8")
	}

	t := &DialogueTable{ID: rec.ID, byNum: make(map[int]int)}
	for ln, line := range strings.Split(string(rec.Data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		comma := strings.IndexByte(line, ',')
		if comma < 0 {
			return nil, malformed(rec, "line %d: no identifier separator", ln+1)
		}
		ident := line[:comma]
		num, err := identNumber(ident)
		if err != nil {
			return nil, malformed(rec, "line %d: %v", ln+1, err)
		}
		if _, dup := t.byNum[num]; dup {
			return nil, malformed(rec, "line %d: duplicate entry %d", ln+1, num)
		}

		tokens, err := tokenizeDialogue(line[comma+1:])
		if err != nil {
			return nil, malformed(rec, "line %d (%s): %v", ln+1, ident, err)
		}
		t.byNum[num] = len(t.Entries)
		t.Entries = append(t.Entries, DialogueEntry{Ident: ident, Num: num, Tokens: tokens})
	}
	return t, nil
}

// identNumber extracts the trailing number of "IDENT_###".
func identNumber(ident string) (int, error) {
	us := strings.LastIndexByte(ident, '_')
	if us < 0 || us == len(ident)-1 {
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.Atoi(ident[us+1:])
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

// tokenizeDialogue splits a message body into tokens.
func tokenizeDialogue(body string) ([]Token, error) {
	var tokens []Token
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, Token{Kind: TokenText, Text: text.String()})
			text.Reset()
		}
	}

	openChoice := 0
	i := 0
	for i < len(body) {
		switch c := body[i]; c {
		case '\\':
			flush()
			tokens = append(tokens, Token{Kind: TokenBreak})
			i++

		case '<':
			flush()
			end := strings.IndexByte(body[i:], '>')
			if end < 0 {
				return nil, &tagError{tag: body[i:], reason: "unterminated"}
			}
			tag := body[i+1 : i+end]
			i += end + 1

			switch {
			case tag == "WAIT":
				closer := strings.Index(body[i:], "</WAIT>")
				if closer < 0 {
					return nil, &tagError{tag: "WAIT", reason: "unterminated"}
				}
				frames, err := strconv.ParseUint(body[i:i+closer], 16, 16)
				if err != nil {
					return nil, &tagError{tag: "WAIT", reason: "bad frame count " + strconv.Quote(body[i:i+closer])}
				}
				tokens = append(tokens, Token{Kind: TokenWait, Arg: int(frames)})
				i += closer + len("</WAIT>")

			case strings.HasPrefix(tag, "/"):
				n := 0
				switch tag {
				case "/C1":
					n = 1
				case "/C2":
					n = 2
				case "/C3":
					n = 3
				case "/C4":
					n = 4
				default:
					return nil, &tagError{tag: tag, reason: "unknown"}
				}
				if openChoice == 0 {
					return nil, &tagError{tag: tag, reason: "close without open"}
				}
				if n != openChoice {
					return nil, &tagError{tag: tag, reason: "closes choice " + strconv.Itoa(openChoice)}
				}
				openChoice = 0
				tokens = append(tokens, Token{Kind: TokenChoiceEnd, Arg: n})

			case len(tag) == 3 && tag[0] == 'S' && isDigit(tag[1]) && isDigit(tag[2]):
				tokens = append(tokens, Token{Kind: TokenSpace, Arg: int(tag[1]-'0')*10 + int(tag[2]-'0')})

			default:
				tok, ok := dialogueTags[tag]
				if !ok {
					return nil, &tagError{tag: tag, reason: "unknown"}
				}
				switch tok.Kind {
				case TokenChoiceStart:
					if openChoice != 0 {
						return nil, &tagError{tag: tag, reason: "choice " + strconv.Itoa(openChoice) + " still open"}
					}
					openChoice = tok.Arg
				case TokenChoiceEnd:
					if openChoice == 0 {
						return nil, &tagError{tag: tag, reason: "close without open"}
					}
					tok.Arg = openChoice
					openChoice = 0
				}
				tokens = append(tokens, tok)
			}

		default:
			text.WriteByte(c)
			i++
		}
	}
	if openChoice != 0 {
		return nil, &tagError{tag: "C" + strconv.Itoa(openChoice), reason: "never closed"}
	}
	flush()
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

type tagError struct {
	tag    string
	reason string
}

func (e *tagError) Error() string {
	return "tag <" + e.tag + ">: " + e.reason
}
