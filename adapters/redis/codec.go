package redis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// stream 訊息的欄位配置：事件以msgpack編碼後，
// 再以base64字串放進單一欄位，避免欄位型別在Redis往返後失真
const payloadField = "data"

var (
	// ErrPointerMessage 表示訊息型別不可為指標
	ErrPointerMessage = errors.New("pointer message type is not allowed")
	// ErrClosed 表示寫入端或讀取端已關閉
	ErrClosed = errors.New("stream endpoint is closed")
)

// EncodeMessage 將事件編碼為 stream 欄位
func EncodeMessage[T any](event T) (map[string]any, error) {
	if reflect.TypeOf(event).Kind() == reflect.Pointer {
		return nil, ErrPointerMessage
	}
	raw, err := msgpack.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}
	return map[string]any{
		payloadField: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// DecodeMessage 將 stream 欄位還原為事件，空訊息視為零值事件
func DecodeMessage[T any](fields map[string]any) (T, error) {
	var event T
	if reflect.TypeOf(event).Kind() == reflect.Pointer {
		return event, ErrPointerMessage
	}
	if len(fields) == 0 {
		return event, nil
	}
	payload, ok := fields[payloadField].(string)
	if !ok {
		return event, fmt.Errorf("field %q not found or invalid type", payloadField)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return event, fmt.Errorf("base64 decode error: %w", err)
	}
	if err := msgpack.Unmarshal(raw, &event); err != nil {
		return event, fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return event, nil
}
