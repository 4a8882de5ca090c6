package lobby

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultPoolYAML is the fixed candidate list the NamingPool draws from
// before it falls back to numeric suffixes. It is kept as embedded YAML,
// mirroring how static game data is loaded elsewhere in this codebase,
// so the pool can be swapped without a recompile in a future revision.
const defaultPoolYAML = `
- apple
- apricot
- avocado
- banana
- blackberry
- blueberry
- cantaloupe
- cherry
- clementine
- coconut
- cranberry
- currant
- date
- dragonfruit
- durian
- elderberry
- fig
- grape
- grapefruit
- guava
- honeydew
- jackfruit
- jujube
- kiwi
- kumquat
- lemon
- lime
- lychee
- mandarin
- mango
- mulberry
- nectarine
- olive
- orange
- papaya
- passionfruit
- peach
- pear
- persimmon
- pineapple
- plum
- pomegranate
- pomelo
- quince
- raspberry
- starfruit
- strawberry
- tangerine
- watermelon
- yuzu
`

// NamingPool allocates unique, human-readable session names. It is
// stateless beyond its allocation mutex: the authoritative "used" set is
// supplied by the caller (the live Session Registry) at allocation time.
type NamingPool struct {
	mu    sync.Mutex
	names []string
	rng   *rand.Rand
}

// NewNamingPool constructs a NamingPool from the embedded default
// candidate list.
func NewNamingPool() *NamingPool {
	return NewNamingPoolFromNames(nil)
}

// NewNamingPoolFromNames constructs a NamingPool from an operator-supplied
// candidate list, falling back to the embedded default list when names is
// empty. Used to wire config.LoadNamingPool's override at startup.
func NewNamingPoolFromNames(names []string) *NamingPool {
	if len(names) == 0 {
		if err := yaml.Unmarshal([]byte(defaultPoolYAML), &names); err != nil {
			// The embedded literal is a build-time constant; a parse
			// failure here is a programming error, not a runtime
			// condition to recover from.
			panic(fmt.Sprintf("lobby: malformed embedded naming pool: %v", err))
		}
	}

	return &NamingPool{
		names: names,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Allocate returns a name not present in used. It first tries a uniformly
// random pick from the fixed pool; once every pool name is taken it
// appends a numeric suffix starting at 2 and increments until a free name
// is found.
//
// Allocation is serialised by a dedicated mutex so two concurrent callers
// racing CreateSession can never be handed the same name.
func (p *NamingPool) Allocate(used map[string]struct{}) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := make([]string, 0, len(p.names))
	for _, n := range p.names {
		if _, taken := used[n]; !taken {
			free = append(free, n)
		}
	}
	if len(free) > 0 {
		return free[p.rng.IntN(len(free))]
	}

	base := p.names[p.rng.IntN(len(p.names))]
	for suffix := 2; ; suffix++ {
		candidate := base + strconv.Itoa(suffix)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}
