package market

import (
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/google/uuid"
)

// Source is the randomness the engine draws from. *math/rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
	Read(p []byte) (int, error)
}

func NewSource(seed int64) *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(seed))
}

func NewTimeSource() *mathrand.Rand {
	return NewSource(time.Now().UnixNano())
}

func uniform(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

func uniformInt(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// NameGenerator produces candidate usernames for registration.
type NameGenerator interface {
	Username() (string, error)
}

var (
	nameAdjectives = []string{"amber", "brisk", "calm", "dusty", "eager", "fuzzy", "gentle", "hazy", "icy", "jolly", "keen", "lucky", "mellow", "nimble", "quiet", "rapid", "sunny", "tidy", "vivid", "witty"}
	nameNouns      = []string{"otter", "heron", "lynx", "maple", "comet", "badger", "falcon", "cedar", "pebble", "walrus", "gecko", "willow", "bison", "raven", "koala", "marten", "panda", "quail", "tapir", "yak"}
)

type sourceNames struct {
	src Source
}

// NewNameGenerator returns a generator drawing from src, so names are
// reproducible under a fixed seed.
func NewNameGenerator(src Source) NameGenerator {
	return sourceNames{src: src}
}

func (g sourceNames) Username() (string, error) {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return "", fmt.Errorf("generate username: %w", err)
	}
	adj := nameAdjectives[g.src.Intn(len(nameAdjectives))]
	noun := nameNouns[g.src.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s_%s", adj, noun, id.String()[:6]), nil
}
