package httpclient

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"golang.org/x/oauth2"

	"swashark/internal/model"
)

// CredentialSource yields the stored credential of a security scheme.
type CredentialSource interface {
	Get(scheme string) (string, bool)
}

type credential struct {
	header model.Header
	query  *queryPair
	cookie string
}

// authFor selects credentials for an effective security requirement list.
// The first alternative whose schemes all have a stored credential wins;
// when none is complete, whatever is stored is attached. Schemes without a
// credential are skipped.
func authFor(reqs []model.Requirement, schemes map[string]model.SecurityScheme, creds CredentialSource) []credential {
	if len(reqs) == 0 || creds == nil {
		return nil
	}

	pick := func(names []string, partial bool) ([]credential, bool) {
		var out []credential
		for _, name := range names {
			value, ok := creds.Get(name)
			if !ok {
				if partial {
					continue
				}
				return nil, false
			}
			scheme, ok := schemes[name]
			if !ok {
				if partial {
					continue
				}
				return nil, false
			}
			if c, ok := schemeCredential(scheme, value); ok {
				out = append(out, c)
			}
		}
		return out, true
	}

	for _, req := range reqs {
		if len(req) == 0 {
			continue
		}
		if out, ok := pick(req, false); ok {
			return out
		}
	}

	var names []string
	seen := map[string]bool{}
	for _, req := range reqs {
		for _, name := range req {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	out, _ := pick(names, true)
	return out
}

func schemeCredential(s model.SecurityScheme, value string) (credential, bool) {
	value = strings.TrimSpace(value)
	switch s.Type {
	case model.SchemeHTTP:
		switch s.Scheme {
		case "bearer", "":
			return credential{header: model.Header{Key: "Authorization", Value: "Bearer " + value}}, true
		case "basic":
			if strings.Contains(value, ":") {
				value = base64.StdEncoding.EncodeToString([]byte(value))
			}
			return credential{header: model.Header{Key: "Authorization", Value: "Basic " + value}}, true
		default:
			return credential{header: model.Header{Key: "Authorization", Value: titleScheme(s.Scheme) + " " + value}}, true
		}
	case model.SchemeAPIKey:
		if s.ParamName == "" {
			return credential{}, false
		}
		switch s.In {
		case "query":
			return credential{query: &queryPair{name: s.ParamName, value: value}}, true
		case "cookie":
			return credential{cookie: s.ParamName + "=" + value}, true
		default:
			return credential{header: model.Header{Key: s.ParamName, Value: value}}, true
		}
	case model.SchemeOAuth2, model.SchemeOpenIDConnect:
		tok := storedToken(value)
		if !tok.Valid() {
			return credential{}, false
		}
		return credential{header: model.Header{Key: "Authorization", Value: tok.Type() + " " + tok.AccessToken}}, true
	}
	return credential{}, false
}

// storedToken reads an OAuth2 credential: a JSON token with access_token,
// token_type and expiry, or a bare access token.
func storedToken(value string) *oauth2.Token {
	if strings.HasPrefix(value, "{") {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(value), &tok); err == nil {
			return &tok
		}
	}
	return &oauth2.Token{AccessToken: value}
}

func titleScheme(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
