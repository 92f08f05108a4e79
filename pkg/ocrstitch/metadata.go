package ocrstitch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// InfoFileName is the metadata dump stored in the workspace.
const InfoFileName = "pdfinfo.txt"

// DocInfo is the metadata pdftk dumps for a document: an opaque key/value
// text blob plus the fields the pipeline itself needs.
type DocInfo struct {
	Raw    string            // verbatim dump_data output, reattached later
	Pages  int               // NumberOfPages
	Fields map[string]string // InfoKey/InfoValue pairs, e.g. Title, Author
}

// DumpMetadata captures the input document's metadata with pdftk dump_data,
// saves the verbatim blob into the workspace, and parses the page count out
// of it. One invocation serves both needs.
func DumpMetadata(ctx context.Context, run *Runner, pdftk, input string, ws *Workspace) (DocInfo, error) {
	result, err := run.Run(ctx, Cmd{Name: pdftk, Args: []string{input, "dump_data"}})
	if err != nil {
		return DocInfo{}, &MetadataError{Err: err}
	}

	info := ParseDocInfo(result.Stdout)
	if info.Pages == 0 {
		return info, &MetadataError{Err: fmt.Errorf("could not determine page count of %s", input)}
	}

	if err := os.WriteFile(ws.Join(InfoFileName), []byte(info.Raw), 0o644); err != nil {
		return info, &MetadataError{Err: err}
	}
	return info, nil
}

// ParseDocInfo parses pdftk dump_data output.
func ParseDocInfo(raw string) DocInfo {
	info := DocInfo{Raw: raw, Fields: make(map[string]string)}

	var key string
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "InfoKey:"):
			key = strings.TrimSpace(strings.TrimPrefix(line, "InfoKey:"))
		case strings.HasPrefix(line, "InfoValue:"):
			if key != "" {
				info.Fields[key] = strings.TrimSpace(strings.TrimPrefix(line, "InfoValue:"))
				key = ""
			}
		case strings.HasPrefix(line, "NumberOfPages:"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "NumberOfPages:")))
			if err == nil {
				info.Pages = n
			}
		}
	}
	return info
}

// RestoreMetadata reattaches the dumped metadata onto the merged document
// and moves the result to the output path. The update writes to a temp name
// first and renames on success, so a failed run never leaves a partial file
// at the output path.
func RestoreMetadata(ctx context.Context, run *Runner, pdftk string, ws *Workspace, merged, output string) error {
	tmp := output + ".tmp"
	_, err := run.Run(ctx, Cmd{
		Name: pdftk,
		Args: []string{merged, "update_info", ws.Join(InfoFileName), "output", tmp},
	})
	if err != nil {
		os.Remove(tmp)
		return &MetadataError{Err: err}
	}
	if _, statErr := os.Stat(tmp); statErr != nil {
		return &MetadataError{Err: fmt.Errorf("pdftk reported success but produced no output: %w", statErr)}
	}
	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return &MetadataError{Err: err}
	}
	return nil
}
