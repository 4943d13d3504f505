package x402

// Version is the harness release version, reported in the User-Agent
const Version = "1.0.0"
