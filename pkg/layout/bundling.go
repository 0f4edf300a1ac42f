package layout

// OsFamily is one of the operating systems a distribution targets.
type OsFamily string

const (
	Windows OsFamily = "windows"
	MacOs   OsFamily = "macos"
	Linux   OsFamily = "linux"
)

// AllOsFamilies lists every supported OS family.
var AllOsFamilies = []OsFamily{Windows, MacOs, Linux}

// Arch is one of the CPU architectures a distribution targets.
type Arch string

const (
	X64     Arch = "x64"
	Aarch64 Arch = "aarch64"
)

// AllArches lists every supported architecture.
var AllArches = []Arch{X64, Aarch64}

// BundlingRestrictions narrows where a plugin layout is bundled. Nil OS or
// arch slices mean "all".
type BundlingRestrictions struct {
	OSes    []OsFamily
	Arches  []Arch
	EAPOnly bool
}

// NoRestrictions bundles everywhere, on every channel.
var NoRestrictions = BundlingRestrictions{}

func (r BundlingRestrictions) allowsOS(os OsFamily) bool {
	if r.OSes == nil {
		return true
	}
	for _, candidate := range r.OSes {
		if candidate == os {
			return true
		}
	}
	return false
}

func (r BundlingRestrictions) allowsArch(arch Arch) bool {
	if r.Arches == nil {
		return true
	}
	for _, candidate := range r.Arches {
		if candidate == arch {
			return true
		}
	}
	return false
}

// Satisfies decides whether a layout restricted by r is bundled for the given
// query. A nil osFamily or arch asks OS- or arch-agnostically, which only
// unrestricted layouts satisfy. The predicate is pure and safe to call
// concurrently; it is re-evaluated per (plugin, OS, arch) combination.
func (r BundlingRestrictions) Satisfies(osFamily *OsFamily, arch *Arch, eapChannel bool) bool {
	if r.EAPOnly && !eapChannel {
		return false
	}
	if osFamily == nil {
		if r.OSes != nil {
			return false
		}
	} else if !r.allowsOS(*osFamily) {
		return false
	}
	if arch == nil {
		if r.Arches != nil {
			return false
		}
	} else if !r.allowsArch(*arch) {
		return false
	}
	return true
}
