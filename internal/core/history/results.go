package history

// StartStreamResult is the outcome of starting a streamed reset.
type StartStreamResult int

const (
	StartOk StartStreamResult = iota
	StartAlreadyActive
	StartOutOfSpace
	StartBackendError
)

// String returns the result name used in logs and client notices.
func (r StartStreamResult) String() string {
	switch r {
	case StartOk:
		return "ok"
	case StartAlreadyActive:
		return "already_active"
	case StartOutOfSpace:
		return "out_of_space"
	case StartBackendError:
		return "backend_error"
	default:
		return "unknown"
	}
}

// AddStreamResult is the outcome of feeding a reset-stream chunk.
type AddStreamResult int

const (
	AddOk AddStreamResult = iota
	AddNotActive
	AddInvalidUser
	AddBadType
	AddDisallowedType
	AddOutOfSpace
	AddConsumerError
)

func (r AddStreamResult) String() string {
	switch r {
	case AddOk:
		return "ok"
	case AddNotActive:
		return "not_active"
	case AddInvalidUser:
		return "invalid_user"
	case AddBadType:
		return "bad_type"
	case AddDisallowedType:
		return "disallowed_type"
	case AddOutOfSpace:
		return "out_of_space"
	case AddConsumerError:
		return "consumer_error"
	default:
		return "unknown"
	}
}

// PrepareStreamResult is the outcome of preparing a streamed reset.
type PrepareStreamResult int

const (
	PrepareOk PrepareStreamResult = iota
	PrepareNotActive
	PrepareInvalidUser
	PrepareInvalidMessageCount
	PrepareOutOfSpace
	PrepareConsumerError
)

func (r PrepareStreamResult) String() string {
	switch r {
	case PrepareOk:
		return "ok"
	case PrepareNotActive:
		return "not_active"
	case PrepareInvalidUser:
		return "invalid_user"
	case PrepareInvalidMessageCount:
		return "invalid_message_count"
	case PrepareOutOfSpace:
		return "out_of_space"
	case PrepareConsumerError:
		return "consumer_error"
	default:
		return "unknown"
	}
}

// AbortStreamResult is the outcome of aborting a streamed reset.
type AbortStreamResult int

const (
	AbortOk AbortStreamResult = iota
	AbortNotActive
	AbortInvalidUser
)

func (r AbortStreamResult) String() string {
	switch r {
	case AbortOk:
		return "ok"
	case AbortNotActive:
		return "not_active"
	case AbortInvalidUser:
		return "invalid_user"
	default:
		return "unknown"
	}
}

// CheckInviteResult is the outcome of checking an invite secret.
type CheckInviteResult int

const (
	InviteNotFound CheckInviteResult = iota
	InviteNoClientKey
	InviteMaxUsesReached
	InviteAlreadyInvited
	InviteAlreadyInvitedNameChanged
	InviteOk
	InviteUsed
)

func (r CheckInviteResult) String() string {
	switch r {
	case InviteNotFound:
		return "not_found"
	case InviteNoClientKey:
		return "no_client_key"
	case InviteMaxUsesReached:
		return "max_uses_reached"
	case InviteAlreadyInvited:
		return "already_invited"
	case InviteAlreadyInvitedNameChanged:
		return "already_invited_name_changed"
	case InviteOk:
		return "ok"
	case InviteUsed:
		return "used"
	default:
		return "unknown"
	}
}

// ThumbnailStartResult is the outcome of requesting thumbnail generation.
type ThumbnailStartResult int

const (
	ThumbnailStartOk ThumbnailStartResult = iota
	ThumbnailStartInvalidUser
	ThumbnailStartAlreadyGenerating
)

func (r ThumbnailStartResult) String() string {
	switch r {
	case ThumbnailStartOk:
		return "ok"
	case ThumbnailStartInvalidUser:
		return "invalid_user"
	case ThumbnailStartAlreadyGenerating:
		return "already_generating"
	default:
		return "unknown"
	}
}

// ThumbnailFinishResult is the outcome of delivering a generated thumbnail.
type ThumbnailFinishResult int

const (
	ThumbnailFinishOk ThumbnailFinishResult = iota
	ThumbnailFinishInvalidUser
	ThumbnailFinishInvalidCorrelator
	ThumbnailFinishNoData
	ThumbnailFinishWriteError
)

func (r ThumbnailFinishResult) String() string {
	switch r {
	case ThumbnailFinishOk:
		return "ok"
	case ThumbnailFinishInvalidUser:
		return "invalid_user"
	case ThumbnailFinishInvalidCorrelator:
		return "invalid_correlator"
	case ThumbnailFinishNoData:
		return "no_data"
	case ThumbnailFinishWriteError:
		return "write_error"
	default:
		return "unknown"
	}
}
