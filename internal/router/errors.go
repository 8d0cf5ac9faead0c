package router

import "errors"

var errEmptyParticipantID = errors.New("router: participantId must not be empty")
