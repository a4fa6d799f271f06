// Package core executes parsed shell programs.
//
// A Shell walks the syntax tree following the steps of
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
//
//  1. The shell reads its input from a file, from the -c option or from a
//     terminal.
//  2. The shell breaks the input into tokens: words and operators.
//  3. The shell parses the input into simple commands and compound
//     commands.
//  4. The shell performs various expansions (separately) on different parts
//     of each command, resulting in a list of pathnames and fields to be
//     treated as a command and arguments.
//  5. The shell performs redirection and removes redirection operators and
//     their operands from the parameter list.
//  6. The shell executes a function, built-in, executable file, or script,
//     giving the names of the arguments as positional parameters numbered 1
//     to n, and the name of the command (or in the case of a function within
//     a script, the name of the script) as the positional parameter numbered
//     0.
//  7. The shell optionally waits for the command to complete and collects
//     the exit status.
//
// Steps 1 to 3 live in package syntax and step 4 in package expand.
package core
