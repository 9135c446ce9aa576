package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnmatchedCallback is returned for callback data that is not a token.
var ErrUnmatchedCallback = errors.New("unmatched callback")

// Screen is the target state of a callback.
type Screen int

const (
	ScreenHome Screen = iota + 1
	ScreenList
	ScreenPreview
	ScreenRedeem
	ScreenFAQ
)

const tokenPrefix = "coupon"

var screenNames = map[Screen]string{
	ScreenHome:    "home",
	ScreenList:    "list",
	ScreenPreview: "preview",
	ScreenRedeem:  "redeem",
	ScreenFAQ:     "faq",
}

// Token is the structured callback payload carried by inline buttons.
// OfferID is only meaningful for Preview and Redeem; Replace only for Home,
// where it deletes the calling message instead of stripping its keyboard.
type Token struct {
	Screen  Screen
	OfferID int64
	Replace bool
}

// HomeToken returns to the menu.
func HomeToken(replace bool) Token { return Token{Screen: ScreenHome, Replace: replace} }
func ListToken() Token { return Token{Screen: ScreenList} }
func PreviewToken(id int64) Token { return Token{Screen: ScreenPreview, OfferID: id} }
func RedeemToken(id int64) Token { return Token{Screen: ScreenRedeem, OfferID: id} }
func FAQToken() Token { return Token{Screen: ScreenFAQ} }

// String encodes the token as callback data (well under Telegram's 64 bytes).
func (t Token) String() string {
	name := screenNames[t.Screen]
	switch t.Screen {
	case ScreenPreview, ScreenRedeem:
		return fmt.Sprintf("%s:%s:%d", tokenPrefix, name, t.OfferID)
	case ScreenHome:
		if t.Replace {
			return tokenPrefix + ":" + name + ":r"
		}
	}
	return tokenPrefix + ":" + name
}

// ParseToken decodes callback data. Anything that is not exactly one of the
// encodings produced by String yields ErrUnmatchedCallback.
func ParseToken(raw string) (Token, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || parts[0] != tokenPrefix {
		return Token{}, fmt.Errorf("%w: %q", ErrUnmatchedCallback, raw)
	}
	args := parts[2:]
	switch parts[1] {
	case "home":
		switch {
		case len(args) == 0:
			return HomeToken(false), nil
		case len(args) == 1 && args[0] == "r":
			return HomeToken(true), nil
		}
	case "list":
		if len(args) == 0 {
			return ListToken(), nil
		}
	case "faq":
		if len(args) == 0 {
			return FAQToken(), nil
		}
	case "preview", "redeem":
		if len(args) != 1 {
			break
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			break
		}
		if parts[1] == "preview" {
			return PreviewToken(id), nil
		}
		return RedeemToken(id), nil
	}
	return Token{}, fmt.Errorf("%w: %q", ErrUnmatchedCallback, raw)
}
