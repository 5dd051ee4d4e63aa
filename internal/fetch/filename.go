package fetch

import (
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sabihismail/website-ripper/internal/fsutil"
)

var dispositionFilename = regexp.MustCompile(`filename="?([^";]+)"?`)

// contentTypeOf strips parameters like "; charset=utf-8" from a media type.
func contentTypeOf(headers http.Header) string {
	ct := headers.Get("Content-Type")
	if ct == "" {
		return ""
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// ignorableContentType reports whether contentType appears in the
// ignore list. An empty list never ignores; a blank content type never
// matches.
func ignorableContentType(ignored []string, contentType string) bool {
	if len(ignored) == 0 || contentType == "" {
		return false
	}
	for _, ct := range ignored {
		if strings.EqualFold(ct, contentType) {
			return true
		}
	}
	return false
}

// extensionForType maps a content type to a preferred file extension,
// keeping the common web types away from mime's alphabetical-first picks
// (e.g. image/jpeg must not become .jfif).
func extensionForType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "text/html":
		return ".html"
	case "text/plain":
		return ".txt"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	case "application/javascript", "text/javascript":
		return ".js"
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// sniffExtension infers an extension from the file's leading bytes.
func sniffExtension(spool string) string {
	f, err := os.Open(spool)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return ""
	}
	return extensionForType(contentTypeOf(http.Header{
		"Content-Type": []string{http.DetectContentType(buf[:n])},
	}))
}

// resolveFilename implements the naming ladder: Content-Disposition first,
// then the URL basename when its extension agrees with the content type,
// then an inferred extension on the spool name, finally the raw URL
// basename. An idealFilename hint replaces the stem, never the extension.
func resolveFilename(finalURL, spool, idealFilename string, headers http.Header) string {
	contentType := contentTypeOf(headers)

	var name string
	if cd := headers.Get("Content-Disposition"); cd != "" {
		if m := dispositionFilename.FindStringSubmatch(cd); m != nil {
			if candidate := fsutil.SanitizeFilename(m[1]); filepath.Ext(candidate) != "" {
				name = candidate
			}
		}
	}

	urlBase := ""
	if u, err := url.Parse(finalURL); err == nil {
		urlBase = path.Base(u.Path)
		if urlBase == "/" || urlBase == "." {
			urlBase = ""
		}
	}

	if name == "" && urlBase != "" {
		declared := contentType
		if declared == "" {
			declared = mime.TypeByExtension(filepath.Ext(urlBase))
		}
		if ext := extensionForType(declared); ext != "" && strings.HasSuffix(strings.ToLower(urlBase), ext) {
			name = urlBase
		}
	}

	if name == "" || filepath.Ext(name) == "" {
		ext := extensionForType(contentType)
		if ext == "" {
			ext = sniffExtension(spool)
		}
		if ext != "" {
			if name == "" {
				name = filepath.Base(spool)
			}
			name += ext
		}
	}

	if name != "" && idealFilename != "" {
		if _, ext := fsutil.SplitExt(name); ext != "" {
			stem, _ := fsutil.SplitExt(fsutil.SanitizeFilename(idealFilename))
			if stem != "" {
				name = stem + ext
			}
		}
	}

	if name == "" {
		name = urlBase
	}
	if name == "" {
		name = filepath.Base(spool)
	}
	return fsutil.SanitizeFilename(name)
}
