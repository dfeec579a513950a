package livereload

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxInjectSize = 512 * 1024

var scriptTag = []byte(`<script async src="` + ScriptPath + `"></script>`)

// InjectScript inserts the client script tag before the last </body> end
// tag found by the HTML tokenizer, or appends it when there is none.
func InjectScript(doc []byte) []byte {
	offset := closingBodyOffset(doc)
	out := make([]byte, 0, len(doc)+len(scriptTag))
	if offset < 0 {
		out = append(out, doc...)
		return append(out, scriptTag...)
	}
	out = append(out, doc[:offset]...)
	out = append(out, scriptTag...)
	return append(out, doc[offset:]...)
}

func closingBodyOffset(doc []byte) int {
	z := html.NewTokenizer(bytes.NewReader(doc))
	pos, found := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return found
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				found = pos
			}
		}
		pos += raw
	}
}

// Middleware injects the client script into HTML responses. Responses
// larger than 512KB or of another content type pass through untouched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if !(p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html")) {
			next.ServeHTTP(w, r)
			return
		}
		iw := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(iw, r)
		iw.finalize()
	})
}

type injector struct {
	http.ResponseWriter
	status      int
	buf         []byte
	decided     bool
	passthrough bool
	wroteHeader bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.ResponseWriter.WriteHeader(code)
		i.wroteHeader = true
	}
}

func (i *injector) startPassthrough() {
	i.passthrough = true
	i.ResponseWriter.WriteHeader(i.status)
	i.wroteHeader = true
}

func (i *injector) Write(p []byte) (int, error) {
	if !i.decided {
		i.decided = true
		ct := i.Header().Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(p)
		}
		if !strings.Contains(ct, "text/html") || i.status != http.StatusOK {
			i.startPassthrough()
		}
	}
	if i.passthrough {
		return i.ResponseWriter.Write(p)
	}
	if len(i.buf)+len(p) > maxInjectSize {
		i.Header().Del("Content-Length")
		i.startPassthrough()
		if _, err := i.ResponseWriter.Write(i.buf); err != nil {
			return 0, err
		}
		i.buf = nil
		return i.ResponseWriter.Write(p)
	}
	i.buf = append(i.buf, p...)
	return len(p), nil
}

func (i *injector) finalize() {
	if i.passthrough || len(i.buf) == 0 {
		if !i.wroteHeader {
			i.ResponseWriter.WriteHeader(i.status)
		}
		return
	}
	out := InjectScript(i.buf)
	i.Header().Set("Content-Length", strconv.Itoa(len(out)))
	i.ResponseWriter.WriteHeader(i.status)
	_, _ = i.ResponseWriter.Write(out)
}
