package tofu

// DefaultVersion is the OpenTofu release downloaded when none is cached.
const DefaultVersion = "1.9.1"
