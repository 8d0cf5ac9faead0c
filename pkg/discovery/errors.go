package discovery

// ErrDiscoveryProxyNotSet is the description used when the aggregator is
// used before a remote discovery proxy has been installed.
const ErrDiscoveryProxyNotSet = "discoveryProxy not set. Couldn't reach local capabilities directory."
