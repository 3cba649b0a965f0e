package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestSendMessageSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, time.Second, testLogger())
	if err := client.SendMessage(context.Background(), 42, "hello", nil); err != nil {
		t.Fatalf("SendMessage 应成功: %v", err)
	}

	if received["chat_id"] != float64(42) {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["text"] != "hello" {
		t.Fatalf("text 不正确: %#v", received)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, time.Second, testLogger())
	if err := client.SendMessage(context.Background(), 42, "hello", nil); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "getUpdates") {
			t.Fatalf("路径应包含 getUpdates, 实际 %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{{
				"update_id": 7,
				"message": map[string]any{
					"message_id": 1,
					"from":       map[string]any{"id": 42, "first_name": "Maria"},
					"chat":       map[string]any{"id": 42},
					"text":       "/list",
				},
			}},
		})
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, time.Second, testLogger())
	updates, err := client.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates 应成功: %v", err)
	}
	if len(updates) != 1 || updates[0].UpdateID != 7 {
		t.Fatalf("unexpected updates %+v", updates)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/list" {
		t.Fatalf("message not decoded: %+v", updates[0])
	}
}

func TestSendMessageKeyboard(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	keyboard := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "ok", CallbackData: "GO"},
	}}}

	client := NewClient("token", srv.URL, time.Second, testLogger())
	if err := client.SendMessage(context.Background(), 1, "confirm?", keyboard); err != nil {
		t.Fatalf("SendMessage 应成功: %v", err)
	}
	if received["reply_markup"] == nil {
		t.Fatal("reply_markup 应随请求发送")
	}
}
