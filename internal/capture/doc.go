// Package capture drives ffmpeg as the screen and audio recorder.
//
// It translates a recording task into an ffmpeg invocation for the host
// platform (gdigrab/dshow on Windows, x11grab/pulse on Linux, avfoundation on
// macOS), resolves the monitor rectangle to grab, and manages the encoder
// process: launch, early-exit detection, graceful quit through stdin, and a
// forced kill once the stop timeout expires.
package capture
