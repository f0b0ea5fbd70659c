// Package media lists the images and videos of a shared Drive folder or a public
// directory index for the slideshow widgets.
package media

import (
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// File is one playable item of a listing.
type File struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType"`
	Source   string `json:"source"`
}

// MIME lookup window around a file id occurrence.
const (
	mimeWindowBefore = 500
	mimeWindowAfter  = 1000
)

const driveViewURL = "https://drive.google.com/uc?export=view&id="

var (
	// Ids appear either as "..." or as \x22...\x22 inside escaped script payloads.
	driveIDPattern = regexp.MustCompile(`(?:"|\\x22)([A-Za-z0-9_-]{25,})(?:"|\\x22)`)
	mimePattern    = regexp.MustCompile(`(?:image|video)/[A-Za-z0-9.+-]+`)
	folderPath     = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
)

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".ogv":  "video/ogg",
}

// DriveFolderID returns the folder id of a Drive folder URL.
func DriveFolderID(u *url.URL) (string, bool) {
	host := strings.ToLower(u.Hostname())
	if host != "drive.google.com" && !strings.HasSuffix(host, ".drive.google.com") {
		return "", false
	}
	if m := folderPath.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	if id := u.Query().Get("id"); id != "" {
		return id, true
	}
	return "", false
}

// ParseDriveFolder extracts the media files referenced by a Drive folder page.
func ParseDriveFolder(page, folderID string) []File {
	files := []File{}
	seen := map[string]bool{folderID: true}

	for _, loc := range driveIDPattern.FindAllStringSubmatchIndex(page, -1) {
		id := page[loc[2]:loc[3]]
		if seen[id] {
			continue
		}

		mime := nearestMime(page, loc[2])
		if mime == "" {
			continue
		}
		seen[id] = true

		source := driveViewURL + id
		if strings.HasPrefix(mime, "video/") {
			source = "/api/video-proxy?id=" + id
		}
		files = append(files, File{ID: id, MimeType: mime, Source: source})
	}
	return files
}

func nearestMime(page string, pos int) string {
	start := pos - mimeWindowBefore
	if start < 0 {
		start = 0
	}
	end := pos + mimeWindowAfter
	if end > len(page) {
		end = len(page)
	}

	best, bestDist := "", -1
	for _, loc := range mimePattern.FindAllStringIndex(page[start:end], -1) {
		dist := start + loc[0] - pos
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = page[start+loc[0]:start+loc[1]], dist
		}
	}
	return best
}

// ParseDirectory extracts media links from an HTML directory index.
func ParseDirectory(r io.Reader, base *url.URL) ([]File, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	files := []File{}
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""

		mime, ok := extensionTypes[strings.ToLower(path.Ext(abs.Path))]
		if !ok || seen[abs.String()] {
			return
		}
		seen[abs.String()] = true
		files = append(files, File{ID: abs.String(), MimeType: mime, Source: abs.String()})
	})
	return files, nil
}
