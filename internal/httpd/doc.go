/*
Package httpd implements a small HTTP/1.1 static file server directly on
top of TCP.

# Overview

Server accepts connections and gives each one its own goroutine
(connWorker). A worker reads a request head, resolves the request line
against a FileStore, writes one response and either keeps the connection
for the next request (Connection: Keep-Alive) or closes it.

Only GET is served. Other methods, malformed request lines and paths
containing ".." receive 501; missing files receive 404.

# Shutdown

Every accepted connection is recorded in a Registry together with a
WorkerHandle before its worker starts. Shutdown runs once and, in order:

  - closes the registry and force-closes every tracked connection, which
    unblocks any worker waiting on a read or write;
  - joins every tracked worker;
  - closes the listening socket.

Cancelling the context given to Serve starts the same sequence from a
separate goroutine.
*/
package httpd
