// Package faceindex maintains the per-event index of facial feature vectors.
//
// Each output folder carries an index.json holding one entry per published
// image: the image file name and the 128-dimension encodings of every face
// found in it. Updates for the same image replace its entry. A missing or
// corrupt index file reads as empty and is rewritten whole on the next save.
//
// Vectors come from a Detector. The production detector drives an external
// face engine process over a length-prefixed request pipe; tests inject fakes.
package faceindex
