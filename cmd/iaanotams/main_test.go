package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/iaanotams/internal/config"
)

const testListing = `<div id="divMainInfo_532372"><table><tr>
<td class="NotamID">C2000/15</td></tr></table></div>
<div id="divMainInfo_522159"><td class="NotamID">A0512/15</td></div>
<div id="divMainInfo_600001"><td class="NotamID">B0001/24</td></div>`

func newTestOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/AeroInfo.aspx", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testListing)
	})
	mux.HandleFunc("/AeroInfo.asmx", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(string(b), "<msgNum>532372</msgNum>"):
			io.WriteString(w, `<Msg MsgNumber="532372"><MsgText>Line A</MsgText><MsgText>Line B</MsgText></Msg>`)
		case strings.Contains(string(b), "<msgNum>600001</msgNum>"):
			io.WriteString(w, `<Msg><MsgText>no number</MsgText></Msg>`)
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	for _, k := range []string{config.EnvListingURL, config.EnvDetailURL, config.EnvProxyURL, config.EnvCacheTTL, config.EnvMinInterval} {
		t.Setenv(k, "")
	}
	cfg := filepath.Join(t.TempDir(), "notams.json")
	body := `{"listing_url":"` + srv.URL + `/AeroInfo.aspx","detail_url":"` + srv.URL + `/AeroInfo.asmx"}`
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}

	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLI_ListJSON(t *testing.T) {
	srv := newTestOrigin(t)
	out, _, err := runCLI(t, srv, "list")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	var got listingJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v\n%s", err, out)
	}
	if got.Count != 3 || got.Entries[0].InternalID != "532372" || got.Entries[1].PublicID != "A0512/15" {
		t.Fatalf("列表不符合预期：%+v", got)
	}
}

func TestCLI_ShowPartialFailure(t *testing.T) {
	srv := newTestOrigin(t)
	out, errOut, err := runCLI(t, srv, "show", "532372", "522159")
	if err == nil {
		t.Fatalf("有失败条目时期望返回错误")
	}

	var got []detailJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v\n%s", err, out)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 条结果，实际 %d", len(got))
	}
	if got[0].Record == nil || got[0].Record.Content != "Line A\nLine B" {
		t.Fatalf("第一条应成功：%+v", got[0])
	}
	if got[1].Record != nil || !strings.Contains(got[1].Error, "500") {
		t.Fatalf("第二条应携带 HTTP 500 错误：%+v", got[1])
	}
	if !strings.Contains(errOut, "522159") {
		t.Fatalf("stderr 应说明失败的编号：%q", errOut)
	}
}

func TestCLI_Lookup(t *testing.T) {
	srv := newTestOrigin(t)
	out, _, err := runCLI(t, srv, "lookup", "c2000/15")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var got []detailJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v\n%s", err, out)
	}
	if len(got) != 1 || got[0].ID != "532372" {
		t.Fatalf("lookup 结果不符合预期：%+v", got)
	}
}

func TestCLI_ShowRequiresArgs(t *testing.T) {
	srv := newTestOrigin(t)
	if _, _, err := runCLI(t, srv, "show"); err == nil {
		t.Fatalf("缺少参数时期望错误")
	}
}

func TestCLI_ListToFile(t *testing.T) {
	srv := newTestOrigin(t)
	dst := filepath.Join(t.TempDir(), "out", "listing.json")

	out, _, err := runCLI(t, srv, "list", "--out", dst)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if out != "" {
		t.Fatalf("--out 时 stdout 应为空，实际 %q", out)
	}

	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("读取输出文件失败：%v", err)
	}
	var got listingJSON
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("输出文件不是合法 JSON：%v", err)
	}
	if got.Count != 3 {
		t.Fatalf("期望 3 条，实际 %d", got.Count)
	}
}

func TestCLI_LookupWithoutMsgNumberKeepsListingID(t *testing.T) {
	srv := newTestOrigin(t)
	out, _, err := runCLI(t, srv, "lookup", "B0001/24")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var got []detailJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v\n%s", err, out)
	}
	if len(got) != 1 || got[0].ID != "600001" {
		t.Fatalf("MsgNumber 缺失时应使用列表中的内部编号：%+v", got)
	}
	if got[0].Record == nil || got[0].Record.InternalID != "" {
		t.Fatalf("详情编号应保持为空：%+v", got[0].Record)
	}
}
