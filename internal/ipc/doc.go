// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Wire
// payloads reuse the api package's transport types so IPC and HTTP consumers
// render the same shapes. The server embeds the daemon; the client fails fast
// when the daemon is offline.
package ipc
