package fsutil

import "strings"

// GroupByPair maps a set of file extensions onto one destination sub-folder.
type GroupByPair struct {
	Extensions []string
	Folder     string
}

// GroupByMapping chooses the output sub-folder for a downloaded file by its
// extension, with a fallback bucket for everything unmatched. Static
// configuration, no state.
type GroupByMapping struct {
	Pairs   []GroupByPair
	FailDir string
}

// FolderFor returns the sub-folder for ext (leading period included).
func (g *GroupByMapping) FolderFor(ext string) string {
	ext = strings.ToLower(ext)
	for _, pair := range g.Pairs {
		for _, e := range pair.Extensions {
			if e == ext {
				return pair.Folder
			}
		}
	}
	return g.FailDir
}

// DefaultGroupBy is the layout the ripper uses for page asset directories.
func DefaultGroupBy() *GroupByMapping {
	return &GroupByMapping{
		FailDir: "other",
		Pairs: []GroupByPair{
			{Extensions: []string{".js", ".mjs"}, Folder: "js"},
			{Extensions: []string{".wasm"}, Folder: "wasm"},
			{Extensions: []string{".css"}, Folder: "css"},
			{Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".ico", ".svg", ".tif", ".tiff", ".avif"}, Folder: "images"},
			{Extensions: []string{".mp4", ".webm", ".mkv", ".mov", ".avi", ".m4v", ".mpg", ".mpeg", ".ts", ".flv", ".3gp"}, Folder: "videos"},
			{Extensions: []string{".mp3", ".m4a", ".aac", ".ogg", ".oga", ".opus", ".wav", ".flac", ".mid", ".amr"}, Folder: "audio"},
			{Extensions: []string{".woff", ".woff2", ".ttf", ".otf", ".eot"}, Folder: "fonts"},
			{Extensions: []string{".zip", ".gz", ".tar", ".bz2", ".xz", ".7z", ".rar", ".zst", ".br"}, Folder: "archives"},
		},
	}
}
