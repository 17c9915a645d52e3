// Package tts holds the text-to-speech backends.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

int
espeak_say(const char *text, const char *lang, int rate)
{
	if (!text || !lang)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { .languages = lang };
	espeak_SetVoiceByProperties(&specs);
	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	espeak_Synth(text, 500, 0, 0, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// Espeak speaks through libespeak-ng in-process. Calls are serialized
// because the library keeps global state.
type Espeak struct {
	mu    sync.Mutex
	Voice string // language code, e.g. "en"
	Rate  int    // words per minute, 0 = library default
}

func NewEspeak(voice string, rate int) *Espeak {
	if voice == "" {
		voice = "en"
	}
	return &Espeak{Voice: voice, Rate: rate}
}

func (e *Espeak) Name() string { return "espeak" }

func (e *Espeak) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	clang := C.CString(e.Voice)
	defer C.free(unsafe.Pointer(clang))

	if rc := C.espeak_say(ctext, clang, C.int(e.Rate)); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return nil
}
