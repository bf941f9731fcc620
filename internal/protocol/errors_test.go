package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrBadFormat,
		ErrWorldBusy,
		ErrUnknownUnit,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestErrorMsgAsError(t *testing.T) {
	e := NewError(ErrWorldBusy, "server busy")
	var err error = &e
	if err.Error() != "E_WORLD_BUSY: server busy" {
		t.Fatalf("got %q", err.Error())
	}
	bare := NewError(ErrInternal, "")
	if bare.Error() != ErrInternal {
		t.Fatalf("got %q", bare.Error())
	}
}
