package mq

import "errors"

var ErrServerClosed = errors.New("mq: server closed")
