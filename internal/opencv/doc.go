// Package opencv binds the OpenCV-backed capabilities: the video capture
// device, the YuNet and Haar cascade face detectors, the SFace embedder and
// the stream overlay. Everything else in the module is pure Go and sees these
// only through the camera, facedetect and embedding interfaces.
package opencv
