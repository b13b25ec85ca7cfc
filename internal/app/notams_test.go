package app

import (
	"context"
	"errors"
	"testing"

	"github.com/John-Robertt/iaanotams/internal/parser"
)

type stubFetcher struct {
	listing    string
	listingErr error
	details    map[string]string
	detailErr  error

	listCalls   int
	detailCalls []string
}

func (f *stubFetcher) FetchListing(ctx context.Context) (string, error) {
	f.listCalls++
	if f.listingErr != nil {
		return "", f.listingErr
	}
	return f.listing, nil
}

func (f *stubFetcher) FetchDetail(ctx context.Context, id string) (string, error) {
	f.detailCalls = append(f.detailCalls, id)
	if f.detailErr != nil {
		return "", f.detailErr
	}
	return f.details[id], nil
}

const listingHTML = `<div id="divMainInfo_532372"><td class="NotamID">C2000/15</td></div>
<div id="divMainInfo_522159"><td class="NotamID">A0512/15</td></div>`

func newStub() *stubFetcher {
	return &stubFetcher{
		listing: listingHTML,
		details: map[string]string{
			"532372": `<Msg MsgNumber="532372"><MsgText>Line A</MsgText><MsgText>Line B</MsgText></Msg>`,
			"522159": `<Msg MsgNumber="522159"></Msg>`,
		},
	}
}

func TestService_List(t *testing.T) {
	f := newStub()
	entries, err := Service{Feed: f}.List(context.Background())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(entries) != 2 || entries[1].PublicID != "A0512/15" {
		t.Fatalf("列表不符合预期：%+v", entries)
	}
}

func TestService_ListFetchError(t *testing.T) {
	f := newStub()
	f.listingErr = errors.New("boom")

	_, err := Service{Feed: f}.List(context.Background())
	var ae *Error
	if !errors.As(err, &ae) || ae.Stage != "fetch" {
		t.Fatalf("期望 fetch 阶段错误，实际：%v", err)
	}
	if !errors.Is(err, f.listingErr) {
		t.Fatalf("期望保留底层错误")
	}
}

func TestService_Lookup(t *testing.T) {
	f := newStub()
	entry, rec, err := Service{Feed: f}.Lookup(context.Background(), "  c2000/15 ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if entry.InternalID != "532372" || entry.PublicID != "C2000/15" {
		t.Fatalf("命中的列表条目不符合预期：%+v", entry)
	}
	if rec.InternalID != "532372" || rec.Content != "Line A\nLine B" {
		t.Fatalf("详情不符合预期：%+v", rec)
	}
	if len(f.detailCalls) != 1 || f.detailCalls[0] != "532372" {
		t.Fatalf("期望只抓取 532372，实际 %v", f.detailCalls)
	}

	_, _, err = Service{Feed: f}.Lookup(context.Background(), "Z9999/99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("期望 ErrNotFound，实际：%v", err)
	}
}

func TestService_DetailsKeepsGoingOnFailure(t *testing.T) {
	f := newStub()
	res := Service{Feed: f}.Details(context.Background(), []string{"522159", "532372"})
	if len(res) != 2 {
		t.Fatalf("期望 2 条结果，实际 %d", len(res))
	}

	var ae *Error
	if !errors.As(res[0].Err, &ae) || ae.Stage != "parse" || ae.ID != "522159" {
		t.Fatalf("期望 522159 在 parse 阶段失败，实际：%v", res[0].Err)
	}
	if !errors.Is(res[0].Err, parser.ErrStructure) {
		t.Fatalf("期望结构错误，实际：%v", res[0].Err)
	}
	if res[1].Err != nil || res[1].Record.Content != "Line A\nLine B" {
		t.Fatalf("第二条应成功：%+v", res[1])
	}
}

func TestService_DetailsCanceled(t *testing.T) {
	f := newStub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Service{Feed: f}.Details(ctx, []string{"532372"})
	if len(res) != 1 || !errors.Is(res[0].Err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际：%+v", res)
	}
	if len(f.detailCalls) != 0 {
		t.Fatalf("取消后不应再抓取：%v", f.detailCalls)
	}
}

func TestService_LookupWithoutMsgNumber(t *testing.T) {
	f := newStub()
	f.details["532372"] = `<Msg><MsgText>no number</MsgText></Msg>`

	entry, rec, err := Service{Feed: f}.Lookup(context.Background(), "C2000/15")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.InternalID != "" {
		t.Fatalf("MsgNumber 缺失时详情编号应为空，实际=%q", rec.InternalID)
	}
	if entry.InternalID != "532372" {
		t.Fatalf("仍应返回列表中的内部编号，实际=%q", entry.InternalID)
	}
}
