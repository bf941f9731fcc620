package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrBadFormat       = "E_BAD_FORMAT"

	// World routing/state.
	ErrWorldBusy   = "E_WORLD_BUSY"
	ErrUnknownUnit = "E_UNKNOWN_UNIT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadFormat:       {},
	ErrWorldBusy:       {},
	ErrUnknownUnit:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
