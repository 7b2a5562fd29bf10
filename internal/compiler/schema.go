package compiler

// schemaSource constrains the shape of a session manifest. Semantic checks
// that need more than one field live in Validate; contradictions between
// artifacts are left to the resolver, which reports them as
// InconsistentArtifactState.
const schemaSource = `
#Kind: "UserStory" | "ArchitecturePlan" | "AcceptanceTest" | "UnitTest" |
	"IntegrationTest" | "ContractTest" | "DomainCode" | "Repository" |
	"Controller" | "ReviewReport"

#Status: "Pending" | "Red" | "Green" | "Approved"

#Profile: {
	scope: "component" | "use_case" | "external_boundary" | "driving_adapter" | "full_stack"
	doubles?: [...("domain_object" | "driven_port" | "repository" | "external_service")]
	real_boundaries?: [...string]
	adapters?: [...("repository" | "external_service")]
}

#Artifact: {
	kind:           #Kind
	name:           string & !=""
	status?:        #Status
	quality_score?: int
	size_days?:     int & >=0
	profile?:       #Profile
	content?:       string
}

#Session: {
	id?:       string
	objective: string & !=""
	scope?: {
		include?: [...string]
		exclude?: [...string]
	}
	entry?:    string
	sub_step?: string
	limits?: {
		max_tdd_iterations?: int & >0
		max_revisions?:      int & >0
	}
	artifacts?: [...#Artifact]
}
`
