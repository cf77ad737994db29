package theme

// Unclassified is the label used when no theme could be determined.
const Unclassified = "unclassified"
