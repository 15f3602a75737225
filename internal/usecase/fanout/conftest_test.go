package fanout

import (
	"time"

	"github.com/kailas-cloud/fedcat/internal/domain/search/channel"
)

func channelClosed() *channel.Channel {
	ch := channel.New(time.Second)
	ch.Close()
	return ch
}
