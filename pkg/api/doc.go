/*
Package api serves the poanet REST API over HTTP.

Routes are registered on a gorilla/mux router. Every lifecycle operation of
the manager has one route under /api:

	GET    /api/networks                               list networks
	POST   /api/networks                               create network
	GET    /api/networks/{network}                     get network
	DELETE /api/networks/{network}                     remove network
	POST   /api/networks/{network}/start               start network
	POST   /api/networks/{network}/stop                stop network
	GET    /api/networks/{network}/status              running services
	GET    /api/networks/{network}/genesis             genesis document
	POST   /api/networks/{network}/nodes               add node
	DELETE /api/networks/{network}/nodes/{node}        remove node
	POST   /api/networks/{network}/nodes/{node}/start  start node
	POST   /api/networks/{network}/nodes/{node}/stop   stop node
	GET    /api/networks/{network}/nodes/{node}/logs   node logs
	GET    /api/networks/{network}/nodes/{node}/health node probe report
	GET    /api/drift                                  roster drift check

The same router serves /health, /ready and /metrics. The node health route
answers 503 with the full report when any probe fails.

# Responses

Reads return the resource as JSON. Mutations return {"message": "..."}, and
creations also carry the created record. Failures return {"error": "..."} with
a status derived from the error kind:

	Unavailable          502
	NotFound             404
	AlreadyExists        409
	InvalidArgument      400
	FailedPrecondition   409
	anything else        500

# Request bodies

	POST /api/networks
	{"networkName": "testnet", "chainId": 1337, "blockTime": 5}

	POST /api/networks/testnet/nodes
	{"nodeName": "signer1", "password": "secret", "nodeType": "signer", "initialBalance": "1000"}

Unknown fields are rejected.
*/
package api
