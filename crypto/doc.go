/*
Package crypto provides the basis for secure communication between orset
replicas. It builds the mutually authenticated TLS configuration replicas use
for gRPC and generates the small internal PKI (one root plus one certificate
per replica) that configuration expects.
*/
package crypto
