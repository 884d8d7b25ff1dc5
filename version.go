package quorum

// Version is the release of the quorum module and its command.
const Version = "0.4.0"
