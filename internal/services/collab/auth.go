package collab

import (
	"context"
	"html"
	"strings"

	"go.uber.org/zap"
)

// Handshake is what a connection presents before it is admitted.
type Handshake struct {
	Pseudo string `form:"pseudo"`
	Room   string `form:"room"`
	Token  string `form:"token"`
}

// Admission is a handshake that passed the gate.
type Admission struct {
	Pseudo string
	Room   string
}

// SanitizePseudo escapes markup and trims surrounding blanks.
func SanitizePseudo(pseudo string) string {
	return strings.TrimSpace(html.EscapeString(pseudo))
}

// Authenticate checks hs against the token store. It never touches the
// session registry.
func (svc *collabService) Authenticate(ctx context.Context, hs Handshake) (Admission, error) {
	// room names are trimmed the same way the join handshake trims them
	room := strings.TrimSpace(hs.Room)
	if hs.Pseudo == "" || room == "" || hs.Token == "" {
		return Admission{}, ErrMissingParameters
	}

	pseudo := SanitizePseudo(hs.Pseudo)
	if pseudo == "" {
		return Admission{}, ErrInvalidPseudo
	}

	expected, ok := svc.tokens.Token(ctx, room)
	if !ok || expected != hs.Token {
		zap.L().Warn("collab.auth_rejected", zap.String("room", room), zap.String("token", hs.Token))
		return Admission{}, ErrAuthenticationRejected
	}
	return Admission{Pseudo: pseudo, Room: room}, nil
}
