package vocab

import "inputbot/internal/access"

// Default returns a standard gamepad vocabulary: face/shoulder/stick
// buttons plus the two analog sticks as axes. Installations are expected
// to build their own Vocabulary from the device they actually expose;
// this is the one the example bot wiring in cmd/inputbot uses out of the
// box.
func Default() *Vocabulary {
	v := New([]InputDef{
		{Name: "a", Kind: Button},
		{Name: "b", Kind: Button},
		{Name: "x", Kind: Button},
		{Name: "y", Kind: Button},
		{Name: "up", Kind: Button},
		{Name: "down", Kind: Button},
		{Name: "left", Kind: Button},
		{Name: "right", Kind: Button},
		{Name: "start", Kind: Button},
		{Name: "select", Kind: Button},
		{Name: "l1", Kind: Button},
		{Name: "r1", Kind: Button},
		{Name: "l2", Kind: Button},
		{Name: "r2", Kind: Button},
		{Name: "l3", Kind: Button},
		{Name: "r3", Kind: Button},
		{Name: "home", Kind: Button},
		{Name: "secretbutton", Kind: Button},
		{Name: "lstickx", Kind: Axis},
		{Name: "lsticky", Kind: Axis},
		{Name: "rstickx", Kind: Axis},
		{Name: "rsticky", Kind: Axis},
	})
	// secretbutton is an example installation-specific restricted input
	// gated to Moderator and above as an example restricted input.
	v.Blacklist["secretbutton"] = access.Moderator
	v.Blacklist["home"] = access.VIP
	return v
}
