// Command capturesync watches a tethered-camera folder, composites a branding
// overlay onto each new photo and publishes the result to an output folder.
//
// `capturesync run` works in the foreground; `capturesync daemon` runs headless
// and is controlled with start, pause, resume, stop and status over a Unix
// socket.
package main
