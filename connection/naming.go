package connection

// PublisherSuffix is appended to names cascaded to a publisher sub-factory.
const PublisherSuffix = ".publisher"

// defaultLabel is used by the default naming strategy when the factory has
// no configured name.
const defaultLabel = "amqpconn"

// NameStrategy produces a new connection name for each connection attempt on
// the given factory. Names should be unique within the process; they are
// sent to the broker as the client-provided connection name and show up in
// its management UI.
type NameStrategy func(f *Factory) string

// DefaultNameStrategy names connections
// "{factory name|amqpconn}#{identity}:{counter}" with a per-factory
// monotonic counter. The counter is never reset, even by Destroy.
func DefaultNameStrategy(f *Factory) string {
	return f.nextDefaultName()
}

// PublisherNameStrategy wraps a strategy so that every produced name carries
// the publisher suffix. The wrapped strategy itself is untouched.
func PublisherNameStrategy(s NameStrategy) NameStrategy {
	return func(f *Factory) string {
		return s(f) + PublisherSuffix
	}
}
