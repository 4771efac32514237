package starcms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/eringen/starcms/upload"
)

func startTask(t *testing.T, ta *testApp) *upload.Task {
	t.Helper()
	task, err := ta.Uploads.Start(context.Background(), upload.Request{
		Folder:   func() (string, error) { return "celebrities/zendaya", nil },
		Category: "gallery",
		Filename: "look.txt",
		Body:     strings.NewReader("look"),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := task.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return task
}

func TestUploadStatusAndPreview(t *testing.T) {
	ta := newTestApp(t)
	task := startTask(t, ta)

	rec := ta.do(t, http.MethodGet, "/admin/uploads/"+task.ID, nil)
	wantStatus(t, rec, http.StatusOK)
	snap := decode[upload.Snapshot](t, rec)
	if snap.Status != upload.StatusSucceeded || snap.Progress != 100 || !strings.HasPrefix(snap.URL, "https://cdn.test/celebrities/zendaya/gallery/") {
		t.Errorf("snapshot = %+v", snap)
	}

	// the preview is released once the object is stored
	wantStatus(t, ta.do(t, http.MethodGet, "/admin/uploads/"+task.ID+"/preview", nil), http.StatusNotFound)
	wantStatus(t, ta.do(t, http.MethodGet, "/admin/uploads/unknown", nil), http.StatusNotFound)
}

func TestUploadStreamSendsTerminalSnapshot(t *testing.T) {
	ta := newTestApp(t)
	task := startTask(t, ta)

	srv := httptest.NewServer(ta.Echo)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/uploads/" + task.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	var snap upload.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if snap.Status != upload.StatusSucceeded || snap.Progress != 100 {
		t.Errorf("snapshot = %+v, want succeeded at 100", snap)
	}

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure {
		t.Errorf("after the terminal snapshot: err = %v, want a normal close", err)
	}
}

func TestUserMessage(t *testing.T) {
	if got := userMessage(&upload.PreconditionError{Message: "Please enter a name"}); got != "Please enter a name" {
		t.Errorf("precondition message = %q", got)
	}
	if got := userMessage(upload.ErrTransfer); got != "Upload failed, please try again" {
		t.Errorf("transfer message = %q", got)
	}
}
