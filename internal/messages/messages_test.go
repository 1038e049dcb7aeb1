package messages

import "testing"

func TestBusMessageEncodeDecodeRoundTrip(t *testing.T) {
	original := QueryRequest("q-1", "SELECT 1", nil)

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Type != BusQueryRequest || decoded.QueryID != "q-1" || decoded.SQL != "SELECT 1" {
		t.Fatalf("unexpected round trip: %#v", decoded)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"type":"SomethingElse"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown bus message tag")
	}
}

func TestValidateRejectsEmptyType(t *testing.T) {
	if err := (BusMessage{}).Validate(); err == nil {
		t.Fatal("expected validation to reject the zero-value tag")
	}
}

func TestQueryResponseExactlyOnePayload(t *testing.T) {
	ok := QueryResponseOK("q-1", "[]")
	if ok.Result == nil || ok.Error != nil {
		t.Fatalf("expected only Result set: %#v", ok)
	}

	failed := QueryResponseErr("q-1", "boom")
	if failed.Error == nil || failed.Result != nil {
		t.Fatalf("expected only Error set: %#v", failed)
	}
}
