// Spirits — the players. A spirit is either vagrant (placing idols and
// seeking a faction to guide) or guiding exactly one faction.
// See design doc Section 2.
package realm

// SpiritID is a unique identifier for a spirit within a room.
type SpiritID string

// MaxInfluence is the influence a spirit holds when it begins guiding.
const MaxInfluence = 3

// Spirit represents a player. Influence is meaningful only while guiding;
// it drains by one per turn and ejection follows at zero.
type Spirit struct {
	ID   SpiritID `json:"id"`
	Name string   `json:"name"`

	Influence int  `json:"influence"` // 0 to MaxInfluence
	Vagrant   bool `json:"isVagrant"`

	GuidedFaction FactionID `json:"guidedFaction,omitempty"` // empty while vagrant

	// PlacedIdol tracks the one-idol-per-vagrant-stint allowance. Reset
	// whenever vagrancy or guidance begins.
	PlacedIdol bool `json:"-"`

	// VictoryTenths accumulates scoring awards in tenths of a victory
	// point, so fractional awards carry across turns without float drift.
	VictoryTenths int `json:"victoryTenths"`
}

// NewSpirit creates a vagrant spirit with no influence and no points.
func NewSpirit(id SpiritID, name string) *Spirit {
	return &Spirit{
		ID:      id,
		Name:    name,
		Vagrant: true,
	}
}

// Guide puts the spirit in control of the faction at full influence and
// opens a fresh idol allowance.
func (s *Spirit) Guide(f FactionID) {
	s.Vagrant = false
	s.GuidedFaction = f
	s.Influence = MaxInfluence
	s.PlacedIdol = false
}

// BecomeVagrant releases any guided faction and opens a fresh idol
// allowance.
func (s *Spirit) BecomeVagrant() {
	s.Vagrant = true
	s.GuidedFaction = ""
	s.Influence = 0
	s.PlacedIdol = false
}

// LoseInfluence drains one influence, flooring at zero.
func (s *Spirit) LoseInfluence() {
	if s.Influence > 0 {
		s.Influence--
	}
}

// Points returns the whole victory points scored so far, flooring the
// fractional remainder.
func (s *Spirit) Points() int {
	return s.VictoryTenths / 10
}
