package naming

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FindVideos walks root and returns every file ending in suffix, sorted
func FindVideos(root, suffix string) ([]string, error) {
	return walk(root, suffix)
}

// FindSlopes returns every slopes table under root, sorted
func FindSlopes(root string) ([]string, error) {
	return walk(root, SlopesSuffix)
}

// Undone returns the videos under root that have no slopes table yet
func Undone(root, suffix string) ([]string, error) {
	videos, err := FindVideos(root, suffix)
	if err != nil {
		return nil, err
	}

	var todo []string
	for _, v := range videos {
		if _, err := os.Stat(PathsFor(v).Slopes); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to check %s: %w", v, err)
		}
		todo = append(todo, v)
	}
	return todo, nil
}

// ReadProcessList reads a .prc file with one video path per line. Blank
// lines and lines starting with '#' are ignored; paths that are not regular files are returned in
// missing rather than failing the whole list.
func ReadProcessList(path string) (videos, missing []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open process list: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if info, err := os.Stat(line); err == nil && info.Mode().IsRegular() {
			videos = append(videos, line)
		} else {
			missing = append(missing, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read process list: %w", err)
	}
	return videos, missing, nil
}

// WriteProcessList writes a commented header followed by one path per line
func WriteProcessList(path string, videos []string) error {
	var b strings.Builder
	b.WriteString("## climbrate ##\n")
	b.WriteString("## Custom file list\n")
	b.WriteString("## Generated @ " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	b.WriteString("##\n")
	for _, v := range videos {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write process list: %w", err)
	}
	return nil
}

func walk(root, suffix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}
