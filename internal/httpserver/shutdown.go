package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdown. Open chat sockets are closed by
// their hub before the server drains, so in-flight API requests are the only
// work this deadline has to cover.
var ShutdownTimeout = 15 * time.Second
