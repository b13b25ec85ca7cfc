package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/John-Robertt/iaanotams/internal/app"
	"github.com/John-Robertt/iaanotams/internal/domain"
	"github.com/John-Robertt/iaanotams/internal/infra/fsx"
)

type listingJSON struct {
	Count   int                   `json:"count"`
	Entries []domain.ListingEntry `json:"entries"`
}

type detailJSON struct {
	ID     string               `json:"id"`
	Record *domain.NoticeRecord `json:"record,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func listingDoc(entries []domain.ListingEntry) listingJSON {
	return listingJSON{Count: len(entries), Entries: entries}
}

func detailDocs(res []app.Result) []detailJSON {
	out := make([]detailJSON, 0, len(res))
	for _, r := range res {
		d := detailJSON{ID: r.ID}
		if r.Err != nil {
			d.Error = r.Err.Error()
		} else {
			rec := r.Record
			d.Record = &rec
		}
		out = append(out, d)
	}
	return out
}

// writeJSONFile 把结果以缩进 JSON 原子写入 path（--out）。
func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := fsx.WriteFileAtomic(path, b); err != nil {
		return fmt.Errorf("写入 %s 失败：%w", path, err)
	}
	return nil
}

// emitListing：TTY 输出人类可读的两列；非 TTY 时 stdout 只输出一个 JSON 文档。
func emitListing(w io.Writer, entries []domain.ListingEntry) error {
	if !isTTY(w) {
		return json.NewEncoder(w).Encode(listingDoc(entries))
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "（列表为空）")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%-10s %s\n", e.InternalID, e.PublicID)
	}
	return nil
}

func emitDetails(w io.Writer, res []app.Result) error {
	if !isTTY(w) {
		return json.NewEncoder(w).Encode(detailDocs(res))
	}
	for i, r := range res {
		if r.Err != nil {
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		id := r.Record.InternalID
		if id == "" {
			// MsgNumber 缺失：退回请求时使用的编号。
			id = r.ID + "?"
		}
		fmt.Fprintf(w, "== %s\n%s\n", id, strings.TrimRight(r.Record.Content, "\n"))
	}
	return nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
