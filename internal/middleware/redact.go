package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
)

// earningsFields are stripped from any JSON object in a student response
var earningsFields = map[string]struct{}{
	"earnings":           {},
	"earnings_id":        {},
	"earnings_amount":    {},
	"amount_minor":       {},
	"platform_fee_minor": {},
	"hourly_rate":        {},
	"teacher_rate":       {},
	"payout_status":      {},
}

// RedactEarnings removes earnings fields from JSON bodies sent to students.
// Teachers and admins get the body untouched.
func RedactEarnings(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRole(r.Context()) == identity.RoleTeacher || GetRole(r.Context()) == identity.RoleAdmin {
			next.ServeHTTP(w, r)
			return
		}

		buf := &bufferedWriter{header: w.Header(), statusCode: http.StatusOK}
		next.ServeHTTP(buf, r)

		body := buf.body.Bytes()
		if strings.HasPrefix(buf.header.Get("Content-Type"), "application/json") && len(body) > 0 {
			redacted, err := redactJSON(body)
			if err != nil {
				log.Error().Err(err).Str("path", r.URL.Path).Msg("Earnings redaction failed")
				response.InternalError(w)
				return
			}
			body = redacted
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(buf.statusCode)
		w.Write(body)
	})
}

func redactJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(stripEarnings(doc)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func stripEarnings(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for key, child := range node {
			if _, ok := earningsFields[key]; ok {
				delete(node, key)
				continue
			}
			node[key] = stripEarnings(child)
		}
		return node
	case []interface{}:
		for i, child := range node {
			node[i] = stripEarnings(child)
		}
		return node
	default:
		return v
	}
}

type bufferedWriter struct {
	header      http.Header
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.statusCode = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}
