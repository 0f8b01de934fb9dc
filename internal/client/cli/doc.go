// Package cli provides the interactive certhub command-line client.
//
// It is a thin consumer of the session store and the request gateway: it
// prompts for credentials, issues authenticated calls and reacts to session
// events. After a session is established it prints the dashboard route for
// the user's role; when the session expires it asks the user to log in again.
//
// Commands
//
//	help                            show available commands
//	register                        create an account
//	login                           authenticate
//	logout                          end the session
//	whoami                          show the current identity
//	get <endpoint>                  GET an API endpoint and print the JSON
//	upload <endpoint> <field> <path> upload a file as multipart form data
//	exit | quit                     leave the program
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
