// Package errorpage renders the static HTML error pages and the directory
// index, grounded on original_source/src/pages/{not_found,forbidden,
// internal_server_error,index_of}.rs.
package errorpage

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fooooter/drain/internal/config"
)

// Render loads documentRoot/<status> (e.g. "404", "403") and returns its
// content, falling back to a minimal built-in page if the file is absent —
// the original only has a hand-authored "404" file and panics without one;
// drain instead degrades gracefully.
func Render(documentRoot string, status int) []byte {
	path := documentRoot + "/" + fmt.Sprint(status)
	if content, err := os.ReadFile(path); err == nil {
		return content
	}
	return builtin(status)
}

func builtin(status int) []byte {
	title := map[int]string{
		403: "Forbidden",
		404: "Not Found",
		500: "Internal Server Error",
		502: "Bad Gateway",
	}[status]
	if title == "" {
		title = "Error"
	}
	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%d %s</title></head>
<body><h1>%d %s</h1></body>
</html>
`, status, title, status, title))
}

// entry is one row of a rendered directory listing.
type entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime string
}

// IndexOf renders a directory listing for documentRoot/directory, honoring
// access control the way index_of.rs does (skipping denied entries)
// instead of ever listing something a client could not otherwise fetch.
func IndexOf(documentRoot, directory string, ac *config.AccessControl) ([]byte, error) {
	entries, err := os.ReadDir(documentRoot + "/" + directory)
	if err != nil {
		return nil, err
	}

	var rows []entry
	for _, e := range entries {
		resourcePath := strings.TrimPrefix(directory+"/"+e.Name(), "/")
		if ac != nil && !ac.IsAccessAllowed(resourcePath) {
			continue
		}
		info, err := e.Info()
		var size int64
		var modTime string
		if err == nil {
			size = info.Size()
			modTime = info.ModTime().UTC().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, entry{Name: e.Name(), IsDir: e.IsDir(), Size: size, ModTime: modTime})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	var list strings.Builder
	for _, r := range rows {
		name := r.Name
		if r.IsDir {
			name += "/"
		}
		fmt.Fprintf(&list, "<li><a href=\"%s\">%s</a> (%d bytes, %s)</li>", name, name, r.Size, r.ModTime)
	}

	content := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Index of /%s</title>
</head>
<body>
<h2>Index of /%s</h2>
<ul>
%s
</ul>
<hr>
<small>drain</small>
</body>
</html>
`, directory, directory, list.String())

	return []byte(content), nil
}
