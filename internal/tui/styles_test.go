package tui

import (
	"strings"
	"testing"

	"github.com/naveenspark/arcana/pkg/domain"
)

func TestShimmerLogoSpellsName(t *testing.T) {
	for _, frame := range []int{0, 1, 50, 999} {
		plain := stripANSI(renderShimmerLogo(frame))
		if plain != "A  R  C  A  N  A" {
			t.Errorf("frame %d: logo = %q", frame, plain)
		}
	}
}

func TestClampByte(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-3, 0},
		{0, 0},
		{127.9, 127},
		{300, 255},
	}
	for _, tc := range tests {
		if got := clampByte(tc.in); got != tc.want {
			t.Errorf("clampByte(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSuitStyleRendersText(t *testing.T) {
	for _, s := range append(domain.Suits, domain.Suit("unknown")) {
		t.Run(string(s), func(t *testing.T) {
			if got := SuitStyle(s).Render("Ace"); !strings.Contains(got, "Ace") {
				t.Errorf("SuitStyle(%q).Render = %q", s, got)
			}
		})
	}
}

func TestHelpViewListsLinks(t *testing.T) {
	v := stripANSI(helpView(1, "https://arcana.cards"))
	if !strings.Contains(v, "https://arcana.cards/privacy") {
		t.Errorf("help view missing privacy link:\n%s", v)
	}
	if !strings.Contains(v, "> Privacy Policy") {
		t.Errorf("help view cursor not on second item:\n%s", v)
	}
}

func TestHelpBarPairs(t *testing.T) {
	got := stripANSI(helpBar("d", "deal", "q", "quit"))
	if got != " d deal  q quit" {
		t.Errorf("helpBar = %q", got)
	}
}

// stripANSI removes styling so assertions match on text only.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
