package filter

/*
Here the Env used in the access rules is defined.
Once this struct is fixed, it should not be changed, otherwise configured rules may not compile any more
(f.e. if properties are renamed etc.)
*/

type Participant struct {
	Id string
	// Tiers are the indexes of the access tiers the participant holds.
	Tiers []int
}

type Roster struct {
	Title      string
	Leader     string
	AccessTier int
	// Limit and Count are the capacity and the current primary count of the requested role.
	Limit int
	Count int
}

type Env struct {
	Participant Participant
	Roster      Roster
	Role        string
	Backup      bool
}
