package events

import (
	"errors"
	"testing"
)

func TestDecodeValid(t *testing.T) {
	ev, err := Decode([]byte(`{"order_id":7,"product_id":3,"quantity":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.OrderID != 7 || ev.ProductID != 3 || ev.Quantity != 2 {
		t.Fatalf("wrong event: %+v", ev)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	ev, err := Decode([]byte(`{"order_id":1,"product_id":2,"quantity":3,"source":"v2","priority":9}`))
	if err != nil {
		t.Fatalf("unknown fields must be ignored: %v", err)
	}
	if ev.Quantity != 3 {
		t.Fatalf("wrong event: %+v", ev)
	}
}

func TestDecodeMissingFields(t *testing.T) {
	cases := map[string]string{
		"missing order_id":   `{"product_id":2,"quantity":3}`,
		"missing product_id": `{"order_id":1,"quantity":3}`,
		"missing quantity":   `{"order_id":1,"product_id":2}`,
		"empty object":       `{}`,
	}
	for name, payload := range cases {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: want ErrDecode, got %v", name, err)
		}
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"order_id":`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("want ErrDecode, got %v", err)
	}
}

func TestDecodeNonPositiveQuantity(t *testing.T) {
	for _, payload := range []string{
		`{"order_id":1,"product_id":2,"quantity":0}`,
		`{"order_id":1,"product_id":2,"quantity":-4}`,
	} {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrDecode) {
			t.Fatalf("want ErrDecode for %s, got %v", payload, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := StockDecrementEvent{OrderID: 42, ProductID: 9, Quantity: 5}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}
