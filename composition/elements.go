package composition

import "strings"

// symbols lists element symbols in atomic-number order; symbols[z-1] has atomic number z.
var symbols = strings.Fields(`
H He Li Be B C N O F Ne Na Mg Al Si P S Cl Ar K Ca
Sc Ti V Cr Mn Fe Co Ni Cu Zn Ga Ge As Se Br Kr Rb Sr Y Zr
Nb Mo Tc Ru Rh Pd Ag Cd In Sn Sb Te I Xe Cs Ba La Ce Pr Nd
Pm Sm Eu Gd Tb Dy Ho Er Tm Yb Lu Hf Ta W Re Os Ir Pt Au Hg
Tl Pb Bi Po At Rn Fr Ra Ac Th Pa U Np Pu Am Cm Bk Cf Es Fm
Md No Lr Rf Db Sg Bh Hs Mt Ds Rg Cn Nh Fl Mc Lv Ts Og
`)

var atomicNumbers = func() map[string]uint32 {
	m := make(map[string]uint32, len(symbols))
	for i, s := range symbols {
		m[s] = uint32(i + 1)
	}
	return m
}()

// AtomicNumber returns the atomic number of an element symbol.
func AtomicNumber(symbol string) (uint32, bool) {
	z, ok := atomicNumbers[symbol]
	return z, ok
}

// Symbol returns the element symbol for an atomic number.
func Symbol(z uint32) (string, bool) {
	if z == 0 || int(z) > len(symbols) {
		return "", false
	}
	return symbols[z-1], true
}
