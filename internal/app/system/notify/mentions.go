package notify

import (
	"regexp"
	"strings"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// A mention is @"Quoted Name" or @token. The @ must start the text or follow
// a character that cannot be part of an address, so "ada@example.com" alone
// is not a mention.
var mentionRE = regexp.MustCompile(`(?:^|[^\w@])@(?:"([^"]+)"|(\w[\w.+\-@]*))`)

// ParseMentions returns the mention tokens in order of appearance, without
// duplicates (compared case-insensitively).
func ParseMentions(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range mentionRE.FindAllStringSubmatch(s, -1) {
		tok := m[1]
		if tok == "" {
			tok = strings.TrimRight(m[2], ".-+@")
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key := text.Fold(tok)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// ResolveMentions matches tokens against members by full name, email, or
// email local part, ignoring case. A token matching several members
// resolves to all of them. Unmatched tokens are dropped.
func ResolveMentions(tokens []string, members []models.User) []models.User {
	if len(tokens) == 0 || len(members) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		wanted[text.Fold(t)] = struct{}{}
	}

	var out []models.User
	added := make(map[primitive.ObjectID]struct{})
	for _, u := range members {
		if _, dup := added[u.ID]; dup {
			continue
		}
		for _, key := range []string{u.FullName, u.Email, u.EmailLocalPart()} {
			if key == "" {
				continue
			}
			if _, ok := wanted[text.Fold(key)]; ok {
				out = append(out, u)
				added[u.ID] = struct{}{}
				break
			}
		}
	}
	return out
}
