// Package audio plays PCM clips through the system output using oto/v3,
// and decodes and resamples the WAV clips the cache and assets hold.
package audio
