// Package mq implements a single-process broadcast publisher.
//
// Producers call Publish from any goroutine. The first call starts one
// dispatch goroutine that drains the queue in batches, frames each message
// with the wire package and pushes it through a transport.Publisher until
// every byte is accepted. When nothing has been sent for the heartbeat
// interval and a subscriber is attached, an empty HEARTBEAT packet is sent.
//
// In confirm mode the dispatch goroutine holds queued messages back while no
// subscriber is attached.
//
//	srv := mq.New(mq.WithSink(mq.NewSlogSink(slog.Default())))
//	if err := srv.Init("tcp://0.0.0.0:5555", true); err != nil {
//		return err
//	}
//	defer srv.Close()
//
//	srv.Publish("tick", payload)
//
// Messages still queued when Close is called are not sent.
package mq
